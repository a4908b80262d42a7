package proto

import "github.com/invopop/jsonschema"

// Catalog groups every payload shape of the protocol for schema reflection.
type Catalog struct {
	Move   Move   `json:"move" jsonschema:"description=Velocity intent. The server normalizes it."`
	Attack Attack `json:"attack" jsonschema:"description=World position the attack streak aims at."`
	Dash   Dash   `json:"dash" jsonschema:"description=Dash direction. Ignored while a dash is running."`
	Tick   Tick   `json:"tick" jsonschema:"description=Snapshot sent to each client every tick."`
}

// Schema reflects the protocol payloads into a JSON schema document.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Catalog))
	schema.Title = "Buckaneers Wire Protocol"
	schema.Description = "Payloads carried inside [tag, payload] envelopes; dev_reset has no payload"
	return schema
}
