package config

import "time"

// Configfile represents the structure of the connres.yaml configuration file.
type Configfile struct {
	Version     string           `yaml:"version"`
	Registry    string           `yaml:"registry"`
	Lockfile    string           `yaml:"lockfile"`
	GeneratedBy string           `yaml:"generatedBy"`
	Strategy    string           `yaml:"strategy"`
	Requires    []RequirementDTO `yaml:"requires"`
	Solver      SolverDTO        `yaml:"solver"`
	Retry       RetryDTO         `yaml:"retry"`
	LogLevel    string           `yaml:"logLevel"`
}

// RequirementDTO is one root request.
type RequirementDTO struct {
	Connector string `yaml:"connector"`
	Version   string `yaml:"version"`
}

// SolverDTO bounds a resolution call.
type SolverDTO struct {
	MaxExpansions int           `yaml:"maxExpansions"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RetryDTO configures registry retries.
type RetryDTO struct {
	MaxAttempts     int           `yaml:"maxAttempts"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
}
