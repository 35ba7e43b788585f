package afpacket

import "fmt"

const (
	tpacketAlignment = 16
	tpacketHdrLen    = 52
	minBlockSize     = 128 << 10
)

// recomputeSize sizes a TPACKET_V3 ring of about bufferMB megabytes.
// The kernel wants frameSize aligned to TPACKET_ALIGNMENT and blockSize a
// multiple of both the page size and frameSize.
func recomputeSize(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a power of two, got %d", pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)
	if frameSize > pageSize {
		frameSize = alignUp(frameSize, pageSize)
	} else {
		// A power of two not above the page size divides it.
		frameSize = nextPowerOfTwo(frameSize)
	}

	blockSize = max(frameSize, pageSize)
	for blockSize < minBlockSize {
		blockSize *= 2
	}

	target := bufferMB << 20
	numBlocks = max(target/blockSize, 1)
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
