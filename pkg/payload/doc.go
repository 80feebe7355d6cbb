// Package payload builds structured records from document elements.
//
// Collect reflects over one element and its ancestor chain:
//
//	<div name="account" data-plan="pro">
//	    <button id="upgrade" data-user-id="42">Upgrade</button>
//	</div>
//
// collecting from the button yields
//
//	{"user_id": "42", "id": "upgrade", "account": {"plan": "pro"}}
//
// When the element sits inside a form, the form's named controls seed the
// record first. Collection never fails; a broken tree yields an empty record.
//
// Request is the default request type handed to handlers. It binds a
// collected Payload to the element and selector it came from and exposes
// fields through an explicit accessor.
package payload
