package journal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"trade-journal-go/internal/models"
)

// SchemaVersion is the version written into every persisted payload.
// Bump it and teach decodeTrades the old layout whenever a stored field changes meaning.
const SchemaVersion = 1

// envelope is the persisted form of the whole collection.
type envelope struct {
	Version int            `json:"version"`
	Trades  []models.Trade `json:"trades"`
}

// payloadSchema accepts the current envelope and the legacy bare array.
const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "optionalNumber": {"type": ["number", "null"]},
    "optionalString": {"type": ["string", "null"]},
    "trade": {
      "type": "object",
      "required": ["id", "date", "stockName", "quantity", "entryPrice", "slPrice", "targetPrice", "strategy", "createdAt", "updatedAt"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "userId": {"type": "string"},
        "date": {"type": "string"},
        "stockName": {"type": "string"},
        "quantity": {"type": "number"},
        "entryPrice": {"type": "number"},
        "slPrice": {"type": "number"},
        "targetPrice": {"type": "number"},
        "exitPrice": {"$ref": "#/definitions/optionalNumber"},
        "trailedSL": {"type": "boolean"},
        "slHit": {"type": "boolean"},
        "strategy": {"type": "string"},
        "imageUrl": {"$ref": "#/definitions/optionalString"},
        "notes": {"$ref": "#/definitions/optionalString"},
        "createdAt": {"type": "string"},
        "updatedAt": {"type": "string"}
      }
    },
    "trades": {"type": "array", "items": {"$ref": "#/definitions/trade"}}
  },
  "oneOf": [
    {"$ref": "#/definitions/trades"},
    {
      "type": "object",
      "required": ["version", "trades"],
      "properties": {
        "version": {"const": 1},
        "trades": {"$ref": "#/definitions/trades"}
      }
    }
  ]
}`

var compiledPayloadSchema = jsonschema.MustCompileString("trades.schema.json", payloadSchema)

// encodeTrades serializes the collection. Times are written as RFC 3339 strings.
func encodeTrades(trades []models.Trade) ([]byte, error) {
	if trades == nil {
		trades = []models.Trade{}
	}
	return json.Marshal(envelope{Version: SchemaVersion, Trades: trades})
}

// decodeTrades parses a stored payload in either the versioned or the legacy layout.
func decodeTrades(data []byte) ([]models.Trade, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if err := compiledPayloadSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("payload does not match schema: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var trades []models.Trade
		if err := json.Unmarshal(trimmed, &trades); err != nil {
			return nil, fmt.Errorf("decode legacy payload: %w", err)
		}
		return trades, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return env.Trades, nil
}
