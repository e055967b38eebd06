package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/pages-admin/internal/config"
)

// envOverrides documents the variables that win over the file.
var envOverrides = []struct{ name, field string }{
	{config.EnvConfigPath, "path of this file"},
	{config.EnvAPIURL, "api.base_url"},
	{config.EnvSessionDB, "session.path"},
	{config.EnvLogLevel, "logging.level"},
	{config.EnvServerPort, "server.port"},
	{config.EnvUploadTarget, "upload.target"},
	{config.EnvS3Bucket, "upload.s3.bucket"},
	{config.EnvS3Endpoint, "upload.s3.endpoint"},
	{config.EnvS3PublicURL, "upload.s3.public_base_url"},
	{config.EnvS3AccessKey, "S3 access key (environment only)"},
	{config.EnvS3SecretKey, "S3 secret key (environment only)"},
}

func header() string {
	var b strings.Builder
	b.WriteString("# Emkan CMS console configuration\n")
	b.WriteString("# Copy this file to config.yaml and customize as needed.\n#\n")
	b.WriteString("# Environment overrides (also read from .env):\n")
	for _, e := range envOverrides {
		fmt.Fprintf(&b, "#   %-26s %s\n", e.name, e.field)
	}
	b.WriteString("\n")
	return b.String()
}

func main() {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}
	output := header() + string(yamlData)

	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if outputFile == "-" {
		fmt.Print(output)
		return
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", outputFile)
}
