// Package template turns nginx template files into site configuration files.
//
// A template is a plain .txt file containing up to three placeholder tokens:
//
//	<ReplaceMe: server name>   all server names, space separated
//	<ReplaceMe: local ip>      backend address, verbatim
//	<ReplaceMe: port number>   backend port, decimal
//
// Substitution is literal text replacement, not a template language. Unknown
// text, including unmatched placeholders, is copied byte for byte.
//
// # Validating a Template
//
// Templates live in one directory (config TemplatesDir). Check a name before
// building a render request:
//
//	v := template.NewValidator(cfg.TemplatesDir)
//	check := v.VerifyExists("reverse-proxy.txt")
//	if !check.Exists {
//	    return fmt.Errorf("%s", check.Error)
//	}
//
// # Rendering
//
//	path, err := template.Render(template.Request{
//	    TemplatePath:   check.FullPath,
//	    ServerNames:    []string{"a.example.com", "b.example.com"},
//	    LocalAddress:   "10.0.0.5",
//	    Port:           8080,
//	    DestinationDir: "/etc/nginx/sites-available",
//	})
//
// The output file is named after the first server name unless
// OutputFileName is set, and is replaced atomically if it exists. Render
// never creates the destination directory.
//
// # Bundled Templates
//
// InstallDefaults seeds a templates directory with the reverse proxy
// templates embedded in the binary.
package template
