// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// so secrets such as the OAuth client secret and the database password can stay
// out of the file itself.
package config
