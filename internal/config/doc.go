// Package config loads and saves the tsm configuration file.
//
// Configuration is stored in YAML at ~/.config/tsm/config.yaml. The
// TSM_CONFIG environment variable or the --config flag points tsm at a
// different file. A missing file is not an error: Load returns defaults,
// with nginx directories taken from platform detection.
//
// Example config.yaml:
//
//	listen: 127.0.0.1:8001
//	data_dir: /var/lib/tsm
//	nginx:
//	  available: /etc/nginx/sites-available
//	  enabled: /etc/nginx/sites-enabled
//	  reload_after_write: true
//	pm2:
//	  binary: pm2
//	auth:
//	  jwt_secret: change-me-to-something-long
//	  token_ttl: 168h
//	  cookie_name: auth-token
//	  reset_token_ttl: 1h
//	  min_password_length: 2
//	access:
//	  match: segment
//	cors:
//	  origins:
//	    - https://dashboard.example.com
//
// Derived locations:
//   - DatabasePath defaults to data_dir/tsm.db
//   - TemplatesPath defaults to data_dir/templates/nginxConfigFiles
//
// Save writes through a temporary file and rename, so a crash never leaves a
// truncated config behind.
package config
