package mcp

import (
	"encoding/json"
	"fmt"
	"io"
)

type serverEntry struct {
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// PrintClientConfig writes the snippets that register this binary with MCP
// clients.
func PrintClientConfig(w io.Writer, name, execPath string, args []string) error {
	clientConfig := struct {
		MCPServers map[string]serverEntry `json:"mcpServers"`
	}{
		MCPServers: map[string]serverEntry{
			name: {Command: execPath, Args: args},
		},
	}
	configJSON, err := json.MarshalIndent(clientConfig, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "MCP Client Configuration:\n%s\n\n", configJSON)

	stdioJSON, err := json.Marshal(serverEntry{Type: "stdio", Command: execPath, Args: args})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Add with a CLI client:\n  mcp add-json %s '%s'\n\n", name, stdioJSON)
	return nil
}
