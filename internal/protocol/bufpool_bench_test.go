package protocol

import (
	"fmt"
	"testing"
)

func TestBytePool_GetClears(t *testing.T) {
	pool := NewBytePool(64)

	b := pool.Get(16)
	for i := range b {
		b[i] = 0xFF
	}
	pool.Put(b)

	b = pool.Get(16)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %#x, pooled buffer must be cleared", i, v)
		}
	}
}

func TestBytePool_GetLarger(t *testing.T) {
	pool := NewBytePool(8)
	b := pool.Get(100)
	if len(b) != 100 {
		t.Fatalf("len = %d, want 100", len(b))
	}
	pool.Put(b)
	pool.Put(nil)
}

// BenchmarkBytePool_GetPut: базовый тест эффективности sync.Pool
func BenchmarkBytePool_GetPut(b *testing.B) {
	b.ReportAllocs()

	pool := NewBytePool(512)

	b.ResetTimer()
	for range b.N {
		buf := pool.Get(256)
		pool.Put(buf)
	}
}

// BenchmarkBytePool_vs_MakeSlice: сравнение pool vs прямая аллокация
func BenchmarkBytePool_vs_MakeSlice(b *testing.B) {
	sizes := []int{64, 256, 1024, 4096}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("pool/%dB", size), func(b *testing.B) {
			b.ReportAllocs()
			pool := NewBytePool(size)

			b.ResetTimer()
			for range b.N {
				buf := pool.Get(size)
				pool.Put(buf)
			}
		})

		b.Run(fmt.Sprintf("make/%dB", size), func(b *testing.B) {
			b.ReportAllocs()

			b.ResetTimer()
			for range b.N {
				buf := make([]byte, size)
				_ = buf
			}
		})
	}
}
