package solbc

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DescribeTxError renders the err field of a transaction status as a short
// human readable string. nil means success and yields "".
//
// Typical shapes:
//
//	"AccountInUse"
//	{"InstructionError": [0, {"Custom": 6001}]}
//	{"InstructionError": [2, "InvalidAccountData"]}
func DescribeTxError(txErr interface{}) string {
	switch v := txErr.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}:
		if ie, ok := v["InstructionError"].([]interface{}); ok && len(ie) == 2 {
			return fmt.Sprintf("instruction %v: %s", ie[0], describeInstructionError(ie[1]))
		}
	}

	data, err := json.Marshal(txErr)
	if err != nil {
		return fmt.Sprintf("%v", txErr)
	}
	return string(data)
}

func describeInstructionError(v interface{}) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]interface{}:
		if code, ok := e["Custom"]; ok {
			return fmt.Sprintf("custom program error %v", code)
		}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

var memoPrefix = regexp.MustCompile(`^\[\d+\]\s*`)

// ParseMemo strips the length prefixes the node adds to memos, e.g.
// "[4] Swap" becomes "Swap". Multiple memos keep only the first.
func ParseMemo(memo string) string {
	first := strings.SplitN(memo, "; ", 2)[0]
	return strings.TrimSpace(memoPrefix.ReplaceAllString(first, ""))
}
