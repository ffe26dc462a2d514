package conn

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	accessKeyPattern = regexp.MustCompile(`^[A-Z0-9]{20}$`)
	tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// ValidateCredentials returns every problem found with the supplied
// credentials. The literal placeholder value is accepted for local
// development endpoints.
func ValidateCredentials(creds Credentials) []string {
	var errs []string

	if strings.TrimSpace(creds.AccessKeyID) == "" {
		errs = append(errs, "access key ID is required")
	} else if creds.AccessKeyID != PlaceholderCredential && !accessKeyPattern.MatchString(creds.AccessKeyID) {
		errs = append(errs, `access key ID must be 20 uppercase alphanumeric characters (or "dummy" for local development)`)
	}

	if strings.TrimSpace(creds.SecretAccessKey) == "" {
		errs = append(errs, "secret access key is required")
	} else if creds.SecretAccessKey != PlaceholderCredential && len(creds.SecretAccessKey) < 40 {
		errs = append(errs, `secret access key must be at least 40 characters (or "dummy" for local development)`)
	}

	return errs
}

// Validate checks a full connection definition.
func Validate(c Connection) []string {
	var errs []string
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, "connection name is required")
	}
	if c.Region == "" {
		errs = append(errs, "region is required")
	}
	errs = append(errs, ValidateCredentials(c.Credentials)...)
	return errs
}

// ValidateTableName enforces the DynamoDB table naming rules.
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(name) < 3 || len(name) > 255 {
		return fmt.Errorf("table name must be between 3 and 255 characters")
	}
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("table name may only contain letters, numbers, dots, hyphens and underscores")
	}
	return nil
}
