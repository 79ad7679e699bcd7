package display

import (
	"encoding/json"
	"fmt"
)

// PrettyPrintJSON prints formatted JSON
func PrettyPrintJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%sError formatting JSON: %s%s\n", Red, err.Error(), Reset)
		return
	}
	fmt.Println(string(data))
}

// PrettyPrintRaw re-indents a raw JSON body, printing it unchanged if it does not parse
func PrettyPrintRaw(raw []byte) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Printf("%sResponse:%s\n%s\n", Cyan, Reset, string(raw))
		return
	}
	fmt.Printf("%sResponse Body:%s\n", Cyan, Reset)
	PrettyPrintJSON(v)
}
