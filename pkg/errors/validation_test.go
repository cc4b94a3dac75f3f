package errors

import "testing"

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "express", false},
		{"with dash", "my-package", false},
		{"with underscore", "my_package", false},
		{"scoped", "@scope/package", false},
		{"legacy uppercase", "JSONStream", false},
		{"with dot", "lodash.merge", false},

		{"empty", "", true},
		{"traversal", "../etc", true},
		{"nested traversal", "@scope/..", true},
		{"double slash", "a//b", true},
		{"backslash", "a\\b", true},
		{"two segments unscoped", "a/b", true},
		{"control char", "a\nb", true},
		{"spaces", "my package", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPackage) {
				t.Errorf("ValidatePackageName(%q) code = %v", tt.input, GetCode(err))
			}
		})
	}
}

func TestValidateBinName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"tsc", false},
		{"my-cli", false},
		{"", true},
		{"..", true},
		{"bin/tool", true},
		{"a\\b", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateBinName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBinName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "bin/cli.js", false},
		{"dot prefix", "./bin/cli.js", false},
		{"dots in name", "bin/cli..js", false},

		{"empty", "", true},
		{"absolute", "/usr/bin/node", true},
		{"traversal", "../../etc/passwd", true},
		{"inner traversal", "bin/../../x", true},
		{"null byte", "bin\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://registry.npmjs.org", false},
		{"http", "http://localhost:4873", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com", true},
		{"file", "file:///etc/passwd", true},
		{"no scheme", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	for _, v := range []string{"1.0.0", "2.0.0-rc.1", "1.0.0+build.5"} {
		if err := ValidateVersion(v); err != nil {
			t.Errorf("ValidateVersion(%q) = %v", v, err)
		}
	}
	for _, v := range []string{"", ".", "../1.0.0", "1.0.0/x", "1.0 .0"} {
		if err := ValidateVersion(v); err == nil {
			t.Errorf("ValidateVersion(%q) should fail", v)
		}
	}
}
