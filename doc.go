// Package castkit decodes and presents live audio/video pushed from a network
// source such as a screen-mirroring receiver.
//
// Key pieces include:
//   - Decoder: a push decoder wrapping a codec library, with transient and
//     fatal error classification and bootstrap extradata for ALAC and AAC-ELD
//   - CodecLibrary: scoped handles over the codec runtime; FFmpeg via purego
//   - PCM helpers: planar to packed interleaving and host format mapping
//   - Raw YUV/PCM dumpers for debugging
//
// Sub-packages:
//   - player: push-fed live player (SDL window, texture and audio queue)
//   - mpvplayer: URL-backed player on libmpv
//   - ingest: RTP, WebRTC and RTMP sources feeding a player
//
// # Architecture
//
//	packets -> [audio queue] -> audio worker -> Decoder -> OnFrameDecoded -> audio device
//	packets -> [video queue] -> video worker -> Decoder -> OnFrameDecoded -> render queue -> UI thread
//
// # Native Libraries
//
// libavcodec, libavutil and libswresample are loaded with purego at runtime
// (CGO_ENABLED=0 works). Set CASTKIT_FFMPEG_LIB_PATH to the directory that
// holds them when they are not on the system search path. libmpv is looked up
// the same way through CASTKIT_MPV_LIB_PATH. The players use go-sdl2 and so
// need cgo and SDL2.
package castkit
