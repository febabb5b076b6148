// Package config handles loading and validating climate control configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (CLIMATE_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret has no default and must be supplied before the API starts
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Climate.Sensor.Group)
package config
