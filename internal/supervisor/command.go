package supervisor

import "path/filepath"

// Fixed names of the supervised agent and its configuration files.
const (
	BinaryName    = "cmpackagemanager"
	BootstrapFile = "bs.json"
	ConfigFile    = "cm_config.json"
)

// Command builds the agent command line:
//
//	<basePath>/cmpackagemanager --bootstrap <configPath>/bs.json --config-file <configPath>/cm_config.json
func Command(basePath, configPath string) []string {
	return []string{
		filepath.Join(basePath, BinaryName),
		"--bootstrap", filepath.Join(configPath, BootstrapFile),
		"--config-file", filepath.Join(configPath, ConfigFile),
	}
}
