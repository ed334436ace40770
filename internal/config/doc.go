// Package config loads the navrouter configuration: the route manifest and
// the settings of the server that serves it.
//
// The file is YAML (JSON is accepted as well) and is read from disk or, for
// s3://bucket/key URIs, from S3.
//
// # Configuration File Structure
//
//	name: blog
//	routes:
//	  - name: home
//	    path: /
//	  - name: post
//	    path: /posts/:postId
//	server:
//	  address: ":8080"
//	  maxSessions: 1024
//	  sessionIdleTimeout: 5m
//	  ackTimeout: 5s
//	  allowedOrigins: ["https://blog.example"]
//	metrics:
//	  enabled: true
//	  namespace: blog
//	log:
//	  level: info
//	  format: json
//
// # Usage
//
//	cfg, err := config.Load(ctx, "navrouter.yaml")
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
//	manifest, err := server.NewManifest(cfg.RouteSpecs())
package config
