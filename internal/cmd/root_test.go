package cmd

import "testing"

func TestAdvertisedCommandsRegistered(t *testing.T) {
	want := []string{"serve", "call", "tools", "schema", "health", "version", "audit"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q is not registered", name)
		}
	}
}
