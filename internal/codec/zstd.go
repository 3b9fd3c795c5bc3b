package codec

import "github.com/klauspost/compress/zstd"

// zstdCompress and friends build a fresh encoder/decoder per call rather
// than reusing one across the package: each DELTA/PRED_DELTA call needs
// a distinct dictionary, and klauspost's Encoder/Decoder are cheap to
// construct relative to the compression work itself (the same tradeoff
// the original Python codec makes building a fresh ZstdCompressor per
// call with a per-call dict_data).

// deltaDictID is the raw-content dictionary id shared by every DELTA and
// PRED_DELTA call. The dictionary content itself (a prior chunk's bytes,
// or a predictor-built concatenation) is never zstd's own trained-dictionary
// format, so the WithEncoderDict/WithDecoderDicts trained-dict API would
// reject it with ErrMagicMismatch; the Raw variants treat the content as
// raw-content dictionary data instead (matching the Python original's
// ZstdCompressionDict(..., dict_type=DICT_TYPE_RAWCONTENT) use).
const deltaDictID = 1

func zstdCompress(data []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func zstdCompressWithDict(data, dict []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderDictRaw(deltaDictID, dict))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecompressWithDict(data, dict []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderDictRaw(deltaDictID, dict))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
