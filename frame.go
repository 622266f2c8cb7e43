// Core frame and sample types used across the castkit package.
package castkit

// PixelFormat identifies a decoded image layout. Values match the codec
// library's pixel format enumeration so frames can be tagged without a table.
type PixelFormat int

const (
	PixelFormatNone     PixelFormat = -1
	PixelFormatI420     PixelFormat = 0  // YUV 4:2:0 planar (Y + U + V)
	PixelFormatRGB24    PixelFormat = 2  // Packed RGB, 3 bytes per pixel
	PixelFormatYUV422P  PixelFormat = 4  // YUV 4:2:2 planar
	PixelFormatYUV444P  PixelFormat = 5  // YUV 4:4:4 planar
	PixelFormatYUVJ420P PixelFormat = 12 // full-range I420
	PixelFormatNV12     PixelFormat = 23 // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatRGBA32   PixelFormat = 26 // Packed RGBA, 4 bytes per pixel
	PixelFormatBGRA32   PixelFormat = 28 // Packed BGRA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatYUVJ420P:
		return "YUVJ420P"
	case PixelFormatYUV422P:
		return "YUV422P"
	case PixelFormatYUV444P:
		return "YUV444P"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatRGBA32:
		return "RGBA32"
	case PixelFormatBGRA32:
		return "BGRA32"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420, PixelFormatYUVJ420P, PixelFormatYUV422P, PixelFormatYUV444P:
		return 3
	case PixelFormatNV12:
		return 2
	case PixelFormatRGB24, PixelFormatRGBA32, PixelFormatBGRA32:
		return 1
	default:
		return 0
	}
}

// IsYUV420 reports whether the format has 4:2:0 three-plane layout.
func (p PixelFormat) IsYUV420() bool {
	return p == PixelFormatI420 || p == PixelFormatYUVJ420P
}

// PlaneRows returns the number of rows stored in plane i for an image of the given height.
func (p PixelFormat) PlaneRows(i, height int) int {
	if i == 0 {
		return height
	}
	switch p {
	case PixelFormatI420, PixelFormatYUVJ420P, PixelFormatNV12:
		return (height + 1) / 2
	case PixelFormatYUV422P, PixelFormatYUV444P:
		return height
	default:
		return 0
	}
}

// Frame is one decoded unit: an image when Width and Height are positive,
// otherwise NbSamples of audio per channel.
//
// Frames handed to a DecoderClient alias codec-library memory and are valid
// only until the callback returns. Use Clone to keep one.
type Frame struct {
	Data   [][]byte // plane data
	Stride []int    // bytes per row (video) or bytes per plane (audio)

	Width       int
	Height      int
	PixelFormat PixelFormat

	SampleFormat SampleFormat
	SampleRate   int
	Channels     int
	NbSamples    int
}

// IsVideo reports whether the frame carries an image.
func (f *Frame) IsVideo() bool {
	return f.Width > 0 && f.Height > 0
}

// Clone creates a deep copy of the frame in Go memory.
func (f *Frame) Clone() *Frame {
	clone := *f
	clone.Data = make([][]byte, len(f.Data))
	clone.Stride = make([]int, len(f.Stride))
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return &clone
}

// AudioBytes returns the number of bytes one packed audio frame occupies.
func (f *Frame) AudioBytes() int {
	return f.SampleFormat.BytesPerSample() * f.NbSamples * f.Channels
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	return ySize + uvSize*2
}
