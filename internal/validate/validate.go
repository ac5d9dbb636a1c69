package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSON validates obj against schemaSrc. obj is round-tripped through JSON,
// numbers kept as json.Number, so values decoded from TOML (int64, nested
// maps) compare as JSON would.
func JSON(obj any, schemaSrc string) error {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("mem://schema.json", strings.NewReader(schemaSrc)); err != nil {
		return err
	}
	sch, err := c.Compile("mem://schema.json")
	if err != nil {
		return err
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return sch.Validate(doc)
}

// SettingsMap validates a generic supervisor settings document.
func SettingsMap(m map[string]any) error {
	return JSON(m, settingsSchema)
}

const settingsSchema = `{
  "$schema":"https://json-schema.org/draft/2020-12/schema",
  "type":"object",
  "additionalProperties":false,
  "properties":{
    "base_path":{"type":"string"},
    "data_path":{"type":"string"},
    "config_path":{"type":"string"},
    "restart_delay":{"type":"string","pattern":"^[0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h)([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))*$"},
    "log_level":{"type":"string","enum":["trace","debug","info","warn","error","fatal","panic","disabled"]},
    "log_file":{"type":"string"},
    "http_addr":{"type":"string"},
    "open_files":{"type":"integer","minimum":0},
    "events":{
      "type":"object",
      "additionalProperties":false,
      "properties":{
        "nats_url":{"type":"string"},
        "mqtt_broker":{"type":"string"},
        "subject":{"type":"string","minLength":1}
      }
    }
  }
}`
