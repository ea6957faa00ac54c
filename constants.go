package upd

// SessionBufferMax is the largest a parallelism session's buffered
// input is allowed to grow before the session is aborted (spec.md
// §4.7).
const SessionBufferMax = 8 * 1024 * 1024

// OutputBufferMax is the largest a parallelism stream's buffered,
// not-yet-read output is allowed to grow before further output is
// dropped with a diagnostic (spec.md §4.7).
const OutputBufferMax = 8 * 1024 * 1024

// OutputFrameMax is the largest single output frame's payload; larger
// writes are fragmented into OutputFrameMax-sized chunks (spec.md
// §4.7, matching the original's UINT16_MAX framing limit).
const OutputFrameMax = 0xFFFF

// TensorMaxRank is the maximum number of dimensions TENSOR_ALLOC
// accepts (spec.md §4.11).
const TensorMaxRank = 4
