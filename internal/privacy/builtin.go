package privacy

// BuiltinPatterns returns the default rule set. User rules loaded from
// the rules file may override any of these by name.
func BuiltinPatterns() []Pattern {
	return []Pattern{
		// API keys and tokens.
		{
			Name:        "OPENAI_API_KEY",
			Regex:       `sk-[a-zA-Z0-9]{48}`,
			Replacement: "[OPENAI_API_KEY]",
			Severity:    SeverityMaximum,
		},
		{
			Name:        "ANTHROPIC_API_KEY",
			Regex:       `sk-ant-[a-zA-Z0-9\-_]{8,}`,
			Replacement: "[ANTHROPIC_API_KEY]",
			Severity:    SeverityMaximum,
		},
		{
			Name:        "GITHUB_TOKEN",
			Regex:       `gh[ps]_[a-zA-Z0-9]{36}`,
			Replacement: "[GITHUB_TOKEN]",
			Severity:    SeverityMaximum,
		},
		{
			Name:        "AWS_ACCESS_KEY_ID",
			Regex:       `AKIA[0-9A-Z]{16}`,
			Replacement: "[AWS_ACCESS_KEY_ID]",
			Severity:    SeverityMaximum,
		},
		{
			Name:        "JWT_TOKEN",
			Regex:       `eyJ[a-zA-Z0-9\-_=]+\.[a-zA-Z0-9\-_=]+\.[a-zA-Z0-9\-_=]+`,
			Replacement: "[JWT_TOKEN]",
			Severity:    SeverityCritical,
		},

		// Database connection strings.
		{
			Name:        "POSTGRES_URL",
			Regex:       `postgres(?:ql)?://[^@\s]+:[^@\s]+@[^/\s]+/\w+`,
			Replacement: "postgresql://[USER]:[PASS]@[HOST]/[DB]",
			Severity:    SeverityCritical,
		},
		{
			Name:        "MYSQL_URL",
			Regex:       `mysql://[^@\s]+:[^@\s]+@[^/\s]+/\w+`,
			Replacement: "mysql://[USER]:[PASS]@[HOST]/[DB]",
			Severity:    SeverityCritical,
		},
		{
			Name:        "MONGODB_URL",
			Regex:       `mongodb(?:\+srv)?://[^@\s]+:[^@\s]+@[^/\s]+`,
			Replacement: "mongodb://[USER]:[PASS]@[HOST]",
			Severity:    SeverityCritical,
		},

		// Credential assignments.
		{
			Name:        "PASSWORD_ASSIGNMENT",
			Regex:       `(?i)password\s*[:=]\s*["']?[^\s"'\[\]]{8,}`,
			Replacement: "password=[REDACTED]",
			Severity:    SeverityMaximum,
		},
		{
			Name:        "SECRET_ASSIGNMENT",
			Regex:       `(?i)secret\s*[:=]\s*["']?[^\s"'\[\]]{8,}`,
			Replacement: "secret=[REDACTED]",
			Severity:    SeverityMaximum,
		},
		{
			Name:        "API_KEY_ASSIGNMENT",
			Regex:       `(?i)api_key\s*[:=]\s*["']?[^\s"'\[\]]{16,}`,
			Replacement: "api_key=[REDACTED]",
			Severity:    SeverityMaximum,
		},

		// Personal information.
		{
			Name:        "EMAIL",
			Regex:       `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Replacement: "[EMAIL]",
			Severity:    SeverityMedium,
		},
		{
			Name:        "US_PHONE",
			Regex:       `\b\d{3}-\d{3}-\d{4}\b`,
			Replacement: "[PHONE]",
			Severity:    SeverityHigh,
		},
		{
			Name:        "CREDIT_CARD",
			Regex:       `\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`,
			Replacement: "[CARD_NUMBER]",
			Severity:    SeverityMaximum,
		},
		{
			Name:        "SSN",
			Regex:       `\b\d{3}-\d{2}-\d{4}\b`,
			Replacement: "[SSN]",
			Severity:    SeverityMaximum,
		},

		// Network and filesystem identifiers.
		{
			Name:        "PRIVATE_IP",
			Regex:       `\b(?:10\.|172\.(?:1[6-9]|2[0-9]|3[01])\.|192\.168\.)\d{1,3}\.\d{1,3}\b`,
			Replacement: "[PRIVATE_IP]",
			Severity:    SeverityMedium,
		},
		{
			Name:        "HOME_DIR",
			Regex:       `/(?:Users|home)/[^/\s]+`,
			Replacement: "/home/[USERNAME]",
			Severity:    SeverityLow,
		},
	}
}
