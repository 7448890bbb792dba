package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{"no patterns admits all", nil, nil, "src/a.ts", true},
		{"include by extension", []string{"*.ts"}, nil, "src/deep/a.ts", true},
		{"include miss", []string{"*.ts"}, nil, "README.md", false},
		{"exclude by directory", nil, []string{"node_modules/*"}, "node_modules/lodash/index.js", false},
		{"nested exclude dir", nil, []string{"node_modules/*"}, "pkg/node_modules/x.js", false},
		{"exclude wins over include", []string{"*.ts"}, []string{"*.test.ts"}, "src/a.test.ts", false},
		{"full path pattern", []string{"src/*.ts"}, nil, "src/a.ts", true},
		{"windows separators normalized", []string{"*.ts"}, nil, `src\a.ts`, true},
		{"doublestar exclude at root", nil, []string{"**/node_modules/**"}, "node_modules/lodash/index.js", false},
		{"doublestar exclude nested", nil, []string{"**/node_modules/**"}, "pkg/node_modules/lodash/index.js", false},
		{"doublestar suffix", []string{"src/**/*.ts"}, nil, "src/deep/nested/a.ts", true},
		{"doublestar non-match", nil, []string{"**/node_modules/**"}, "src/modules/a.ts", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldProcess(tt.include, tt.exclude, tt.path))
		})
	}
}
