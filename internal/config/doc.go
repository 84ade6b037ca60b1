// Package config loads and validates the control panel configuration.
//
// Settings come from an embedded default file, optionally overlaid by a
// user TOML file. The console section describes the organ: its divisions,
// their stops, the couplers and any pistons preloaded at startup. A user
// file without divisions keeps the embedded sample console.
//
// Command-line flags are applied by the caller on top of the loaded Config;
// call Validate again afterwards.
package config
