package eventbridge

import "encoding/json"

func decodeEvent(data []byte, event interface{}) error {
	return json.Unmarshal(data, event)
}
