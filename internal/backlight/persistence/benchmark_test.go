package persistence

import (
	"path/filepath"
	"testing"
)

func BenchmarkFileStorage_Save(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_file.bin")
	s := NewFileStorage(path)
	if err := s.Open(); err != nil {
		b.Fatalf("Failed to open file storage: %v", err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Save(uint32(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMmapStorage_Save measures write + msync.
func BenchmarkMmapStorage_Save(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_mmap.bin")
	s := NewMmapStorage(path)
	if err := s.Open(); err != nil {
		b.Fatalf("Failed to open mmap storage: %v", err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Save(uint32(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFileStorage_Load(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_file_load.bin")
	s := NewFileStorage(path)
	if err := s.Open(); err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	_ = s.Save(128)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Load()
	}
}
