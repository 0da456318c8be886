package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHideManifestSecrets(t *testing.T) {
	for _, tc := range []struct {
		description string
		manifest    string
		wantContain []string
		wantAbsent  []string
	}{
		{
			description: "redacts data and stringData on a Secret",
			manifest: `apiVersion: v1
kind: Secret
metadata:
  name: db-creds
data:
  password: cGFzc3dvcmQ=
stringData:
  username: admin
`,
			wantContain: []string{"kind: Secret", redacted},
			wantAbsent:  []string{"cGFzc3dvcmQ=", "username: admin"},
		},
		{
			description: "leaves a ConfigMap untouched",
			manifest: `apiVersion: v1
kind: ConfigMap
metadata:
  name: app-config
data:
  level: debug
`,
			wantContain: []string{"level: debug"},
		},
		{
			description: "redacts only the Secret document in a multi-document manifest",
			manifest: `apiVersion: v1
kind: ConfigMap
metadata:
  name: app-config
data:
  level: debug
---
apiVersion: v1
kind: Secret
metadata:
  name: db-creds
data:
  password: cGFzc3dvcmQ=
`,
			wantContain: []string{"level: debug", redacted},
			wantAbsent:  []string{"cGFzc3dvcmQ="},
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			got := HideManifestSecrets(tc.manifest)
			for _, want := range tc.wantContain {
				assert.Contains(t, got, want)
			}
			for _, absent := range tc.wantAbsent {
				assert.NotContains(t, got, absent)
			}
		})
	}
}

func TestHideManifestSecretsEmpty(t *testing.T) {
	assert.Equal(t, "", HideManifestSecrets(""))
}
