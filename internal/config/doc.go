// Package config loads joint.json, the server configuration file.
//
// # Configuration File Structure
//
//	{
//	  "address": ":8000",
//	  "adminAddress": "127.0.0.1:8001",
//	  "persistInterval": "5m",
//	  "advertise": true,
//	  "sessions": [
//	    {"file": "art/blocktronics.bin", "pass": "secret"},
//	    {"path": "lobby", "file": "art/lobby.bin", "quiet": true}
//	  ],
//	  "snapshot": {
//	    "backend": "redis",
//	    "redis": {"addr": "localhost:6379", "prefix": "joint:snapshot:"}
//	  }
//	}
//
// Every field is optional; missing values take the defaults from Default.
// Relative session files resolve against the directory holding joint.json.
//
// # Usage
//
//	cfg, err := config.Load("joint.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address)
package config
