package engine

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rvbl-protocol/rvbl-go/pkg/payload"
)

// variablePattern matches {{ variable }} templates.
var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Template variables available to command templates.
const (
	VarSize     = "size"
	VarCRC32    = "crc32"
	VarCRC32Hex = "crc32_hex"
)

// Interpolate replaces {{ variable }} placeholders in a command template.
// Unknown variables are left unchanged.
func Interpolate(template string, vars map[string]any) string {
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := variablePattern.FindStringSubmatch(match)
		value, ok := vars[sub[1]]
		if !ok {
			return match
		}
		return valueToString(value)
	})
}

// UnresolvedVariables returns the names of placeholders not in vars.
func UnresolvedVariables(template string, vars map[string]any) []string {
	var missing []string
	for _, sub := range variablePattern.FindAllStringSubmatch(template, -1) {
		if _, ok := vars[sub[1]]; !ok {
			missing = append(missing, sub[1])
		}
	}
	return missing
}

// templateVars returns the variables for a payload of the given size and CRC.
func templateVars(size int, crc uint32) map[string]any {
	return map[string]any{
		VarSize:     size,
		VarCRC32:    crc,
		VarCRC32Hex: fmt.Sprintf("%08X", crc),
	}
}

// PayloadVars returns the template variables describing p.
func PayloadVars(p payload.Payload) map[string]any {
	return templateVars(p.Len(), p.CRC32)
}

func valueToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
