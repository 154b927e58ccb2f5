package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleDiff = `diff --git a/src/app.go b/src/app.go
index 3b18e51..a9c4f2d 100644
--- a/src/app.go
+++ b/src/app.go
@@ -10,7 +10,8 @@ func main() {
 	cfg := load()
 	if cfg == nil {
-		return
+		log.Fatal("no config")
+
 	}
 	run(cfg)
\ No newline at end of file
diff --git a/package-lock.json b/package-lock.json
index 1111111..2222222 100644
--- a/package-lock.json
+++ b/package-lock.json
@@ -1,3 +1,3 @@
-    "version": "1.0.0",
+    "version": "1.0.1",
diff --git a/assets/logo.png b/assets/logo.png
new file mode 100644
index 0000000..e69de29
Binary files /dev/null and b/assets/logo.png differ
diff --git a/README.md b/README.md
old mode 100644
new mode 100755
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-# Old
+# New
`

func TestReduce(t *testing.T) {
	got := Reduce(sampleDiff)

	want := strings.Join([]string{
		"diff --git a/src/app.go b/src/app.go",
		"@@ -10,7 +10,8 @@ func main() {",
		"-\t\treturn",
		"+\t\tlog.Fatal(\"no config\")",
		"diff --git a/assets/logo.png b/assets/logo.png",
		"diff --git a/README.md b/README.md",
		"@@ -1 +1 @@",
		"-# Old",
		"+# New",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestReduceProperties(t *testing.T) {
	inputs := map[string]string{
		"empty":       "",
		"sample":      sampleDiff,
		"plain":       "+ added line\n- removed line",
		"crlf":        "diff --git a/x b/x\r\n--- a/x\r\n+++ b/x\r\n@@ -1 +1 @@\r\n-a\r\n+b\r\n",
		"cr only":     "@@ -1 +1 @@\r-a\r+b\r",
		"context":     " unchanged\n unchanged\n unchanged",
		"noise only":  "diff --git a/yarn.lock b/yarn.lock\n@@ -1 +1 @@\n-a\n+b",
		"header-like": "@@ -1,2 +1,2 @@\n--- removed dashes\n+++ added pluses",
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			once := Reduce(in)
			assert.LessOrEqual(t, len(once), len(in), "reduction must not expand input")
			assert.Equal(t, once, Reduce(once), "reduction must be idempotent")
		})
	}
}

func TestReduceEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain change lines", in: "+ added line\n- removed line", want: "+ added line\n- removed line"},
		{name: "context only", in: " a\n b\n c", want: ""},
		{name: "whitespace only change", in: "@@ -1 +1 @@\n+   \n-\t", want: "@@ -1 +1 @@"},
		{name: "crlf normalised", in: "@@ -1 +1 @@\r\n-a\r\n+b", want: "@@ -1 +1 @@\n-a\n+b"},
		{name: "content after hunk is kept", in: "@@ -1,2 +1,2 @@\n--- removed dashes\n+++ added pluses", want: "@@ -1,2 +1,2 @@\n--- removed dashes\n+++ added pluses"},
		{name: "noise file dropped", in: "diff --git a/dist/app.min.js b/dist/app.min.js\n@@ -1 +1 @@\n-a\n+b", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.in))
		})
	}
}

func TestReduceMaxLinesPerFile(t *testing.T) {
	in := strings.Join([]string{
		"diff --git a/a.go b/a.go",
		"@@ -1,3 +1,3 @@",
		"+one",
		"+two",
		"@@ -10,3 +10,3 @@",
		"+three",
		"diff --git a/b.go b/b.go",
		"@@ -1 +1 @@",
		"+four",
	}, "\n")

	r := Reducer{MaxLinesPerFile: 2}
	got := r.Reduce(in)

	want := strings.Join([]string{
		"diff --git a/a.go b/a.go",
		"@@ -1,3 +1,3 @@",
		"+one",
		"+two",
		"diff --git a/b.go b/b.go",
		"@@ -1 +1 @@",
		"+four",
	}, "\n")
	assert.Equal(t, want, got)
	assert.Equal(t, got, r.Reduce(got))
}

func TestIsNoiseFile(t *testing.T) {
	tests := map[string]bool{
		"go.sum":                       true,
		"web/package-lock.json":        true,
		"static/app.min.js":            true,
		"src/__snapshots__/a.test.tsx": true,
		"api/v1/service.pb.go":         true,
		"packages/ui/dist/index.js":    true,
		"src/main.go":                  false,
		"docs/lockfiles.md":            false,
		"distribution/main.go":         false,
	}

	for p, want := range tests {
		t.Run(p, func(t *testing.T) {
			assert.Equal(t, want, IsNoiseFile(p))
		})
	}
}
