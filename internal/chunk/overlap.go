package chunk

import "sort"

// OuterChunks reduces chunks to the maximal set under containment: no
// chunk in the result is contained in another. Chunks spanning the same
// range keep insertion order - the first one seen wins the tie; partially
// overlapping chunks are all kept.
func OuterChunks(chunks []ValidChunk) []ValidChunk {
	if len(chunks) == 0 {
		return nil
	}

	bySize := make([]ValidChunk, len(chunks))
	copy(bySize, chunks)
	sort.SliceStable(bySize, func(i, j int) bool {
		return bySize[i].Size() > bySize[j].Size()
	})

	outer := make([]ValidChunk, 0, len(bySize))
	outer = append(outer, bySize[0])

	for _, candidate := range bySize[1:] {
		contained := false

		for _, o := range outer {
			if o.Chunk == candidate.Chunk || Contains(o.Chunk, candidate.Chunk) {
				contained = true
				break
			}
		}

		if !contained {
			outer = append(outer, candidate)
		}
	}

	return outer
}

// Gaps returns the UnknownChunks covering every byte of [0, fileSize) not
// claimed by any input chunk. It returns nil when chunks is empty or
// fileSize is zero - the driver treats a whole unscanned file as opaque,
// not as one giant unknown chunk.
func Gaps(chunks []ValidChunk, fileSize int64) []UnknownChunk {
	if len(chunks) == 0 || fileSize == 0 {
		return nil
	}

	sorted := make([]ValidChunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var gaps []UnknownChunk

	first := sorted[0]
	if first.Start != 0 {
		gaps = append(gaps, UnknownChunk{Chunk{Start: 0, End: first.Start}})
	}

	for i := 0; i < len(sorted)-1; i++ {
		cur, next := sorted[i], sorted[i+1]
		if next.Start > cur.End {
			gaps = append(gaps, UnknownChunk{Chunk{Start: cur.End, End: next.Start}})
		}
	}

	last := sorted[len(sorted)-1]
	if last.End < fileSize {
		gaps = append(gaps, UnknownChunk{Chunk{Start: last.End, End: fileSize}})
	}

	return gaps
}
