package stream

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestChunkOrderingProperty verifies that for any answer text and chunk
// size, a subscriber observes strictly increasing sequence numbers
// terminated by exactly one final chunk, and that concatenating the
// payloads reproduces the answer.
func TestChunkOrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("subscriber sees ordered chunks with one final marker", prop.ForAll(
		func(content string, chunkSize int) bool {
			b := NewBroker(func(o *Options) { o.BufferSize = 4096 })
			ch, cancel := b.Subscribe("conv")
			defer cancel()

			b.PublishAnswer("conv", content, chunkSize)

			var (
				lastSeq uint64
				finals  int
				rebuilt string
			)
		drain:
			for {
				select {
				case c := <-ch:
					if c.Seq <= lastSeq {
						return false
					}
					lastSeq = c.Seq
					rebuilt += c.Payload
					if c.Final {
						finals++
						break drain
					}
				default:
					return false // final marker must already be buffered
				}
			}
			return finals == 1 && rebuilt == content
		},
		gen.AnyString(),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}
