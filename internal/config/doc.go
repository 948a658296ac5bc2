// Package config provides configuration parsing for vdiff.
//
// The configuration is stored in vdiff.json. This package handles loading,
// saving, and validating configuration. VDIFF_PORT and VDIFF_HOST override
// the file's server settings.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "127.0.0.1",
//	    "port": 7070,
//	    "readTimeout": "30s",
//	    "writeTimeout": "10s",
//	    "maxBodyBytes": 4194304
//	  },
//	  "metrics": {"enabled": true, "path": "/metrics", "namespace": "vdiff"},
//	  "tracing": {"enabled": false},
//	  "reconcile": {"strictKeys": true},
//	  "snapshot": {
//	    "backend": "s3",
//	    "bucket": "vdiff-snapshots",
//	    "prefix": "prod/",
//	    "region": "us-east-1"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrNew(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
