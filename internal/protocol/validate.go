package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://house-heist.local/schemas/"

var payloadSchemas = map[string]string{
	TypeLogin:     "login.schema.json",
	TypeOperation: "operation.schema.json",
	TypeTransfer:  "transfer.schema.json",
	TypeInventory: "empty.schema.json",
	TypeLevel:     "empty.schema.json",
	TypeLogout:    "empty.schema.json",
}

// Decoder checks inbound frames against the embedded schemas before they are
// decoded into payload structs.
type Decoder struct {
	envelope *jsonschema.Schema
	payloads map[string]*jsonschema.Schema
}

func NewDecoder() (*Decoder, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	d := &Decoder{payloads: make(map[string]*jsonschema.Schema)}
	if d.envelope, err = c.Compile(schemaBase + "envelope.schema.json"); err != nil {
		return nil, fmt.Errorf("compile envelope: %w", err)
	}
	for typ, name := range payloadSchemas {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		d.payloads[typ] = s
	}
	return d, nil
}

// Decode validates one frame and returns its envelope.
func (d *Decoder) Decode(frame []byte) (Message, error) {
	var doc any
	if err := json.Unmarshal(frame, &doc); err != nil {
		return Message{}, fmt.Errorf("bad json: %w", err)
	}
	if err := d.envelope.Validate(doc); err != nil {
		return Message{}, fmt.Errorf("bad envelope: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, fmt.Errorf("bad envelope: %w", err)
	}
	var payload any
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return Message{}, fmt.Errorf("bad payload: %w", err)
		}
	}
	if err := d.payloads[msg.Type].Validate(payload); err != nil {
		return Message{}, fmt.Errorf("bad %s payload: %w", msg.Type, err)
	}
	return msg, nil
}

// DecodePayload unmarshals a validated payload into v.
func DecodePayload(msg Message, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Payload, v)
}
