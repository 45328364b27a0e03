package watchdog

import (
	"encoding/json"
	"fmt"
)

func unmarshalData(raw json.RawMessage, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("watchdog: malformed request payload: %w", err)
	}
	return nil
}
