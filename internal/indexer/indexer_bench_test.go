package indexer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dshills/codeintel/internal/embedder"
	"github.com/dshills/codeintel/internal/parser"
	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/internal/vectorstore"
)

// generateSource returns a file with n small functions
func generateSource(n int) string {
	var b strings.Builder
	b.WriteString("package bench\n\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "// Handler%d handles request %d\nfunc Handler%d(x int) int {\n\treturn x * %d\n}\n\n", i, i, i, i)
	}
	return b.String()
}

func BenchmarkBuildChunks(b *testing.B) {
	src := []byte(generateSource(200))
	p := parser.New()
	parsed := p.ParseSource("bench/handlers.go", src)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buildChunks("bench/handlers.go", parsed)
	}
}

func BenchmarkIndexCode(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 20; i++ {
		createTestFile(b, root, fmt.Sprintf("pkg%d/handlers.go", i), generateSource(25))
	}

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		db, err := storage.NewSQLiteStorage(":memory:")
		if err != nil {
			b.Fatal(err)
		}
		vs, err := vectorstore.Open("", false, log.New(io.Discard))
		if err != nil {
			b.Fatal(err)
		}
		idx := New(db, vs, embedder.NewLocalProvider(128), log.New(io.Discard))
		b.StartTimer()

		if _, err := idx.IndexCode(context.Background(), root, &Config{Workers: 4}); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		_ = db.Close()
		b.StartTimer()
	}
}
