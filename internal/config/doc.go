// Package config provides configuration loading for eventwire.
//
// Values come from built-in defaults, an optional eventwire.yaml, environment
// variables prefixed EVENTWIRE_ and explicitly set CLI flags, in increasing
// order of precedence.
//
// # Configuration File Structure
//
//	document: ./page.html
//	manifest: s3://my-bucket/eventwire.toml
//	base_path: https://api.example.com
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	http:
//	  timeout: 10s
//	  headers:
//	    X-Client: eventwire
//	log:
//	  level: debug
//	  format: json
//	metrics:
//	  enabled: true
//	tracing:
//	  enabled: false
//	aws:
//	  region: eu-west-1
//
// # Usage
//
//	cfg, err := config.Load("", cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
