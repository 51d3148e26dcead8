package paychmon

/*
 * Dual-licensed under Apache-2.0 and MIT.
 *
 * You can get a copy of the Apache License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * You can also get a copy of the MIT License at
 *
 * http://opensource.org/licenses/MIT
 */

import (
	"encoding/json"
	"time"
)

type trackedVal struct {
	UpdatedAt     time.Time `json:"updated_at"`
	SettlingUntil uint64    `json:"settling_until"`
}

// encVal encodes a tracking record to its datastore value.
//
// @input - updatedAt, settlingUntil.
//
// @output - value, error.
func encVal(updatedAt time.Time, settlingUntil uint64) ([]byte, error) {
	return json.Marshal(trackedVal{UpdatedAt: updatedAt, SettlingUntil: settlingUntil})
}

// decVal decodes a tracking record from its datastore value.
//
// @input - value.
//
// @output - updatedAt, settlingUntil, error.
func decVal(val []byte) (time.Time, uint64, error) {
	var v trackedVal
	if err := json.Unmarshal(val, &v); err != nil {
		return time.Time{}, 0, err
	}
	return v.UpdatedAt, v.SettlingUntil, nil
}
