package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// JSON error codes returned by the REST API.
const (
	CodeUnknownInteraction = 10062
	CodeMissingAccess      = 50001
	CodeMissingPermissions = 50013
)

// RESTErrorCode extracts the API error code from err.
func RESTErrorCode(err error) (int, bool) {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return 0, false
	}
	return restErr.Message.Code, true
}

// IsPermissionError reports whether the bot lacks access to the resource.
func IsPermissionError(err error) bool {
	code, ok := RESTErrorCode(err)
	return ok && (code == CodeMissingAccess || code == CodeMissingPermissions)
}
