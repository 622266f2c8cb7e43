package player

import (
	"fmt"

	"github.com/thesyncim/castkit"
)

// onAudioFrame opens the audio device on first use and queues the frame's
// samples. Called on the audio worker.
func (p *Player) onAudioFrame(f *castkit.Frame) {
	p.audioMu.Lock()
	defer p.audioMu.Unlock()

	if p.audio == nil {
		return
	}

	want := audioSpec{
		Freq:     f.SampleRate,
		Format:   castkit.MapSampleFormat(f.SampleFormat),
		Channels: f.Channels,
		Samples:  bufferSamples(f.SampleRate),
	}

	if p.audioOpen && p.cfg.ReopenAudioOnFormatChange && !sameFormat(p.audioSpec, want) {
		p.log.Infof("audio format changed from %s to %s, reopening device", describeSpec(p.audioSpec), describeSpec(want))
		p.audio.Close()
		p.audioOpen = false
	}
	if !p.audioOpen {
		if p.audioFailed && sameFormat(p.audioSpec, want) {
			return
		}
		if err := p.openAudio(want); err != nil {
			p.log.Errorf("audio output unavailable: %v", err)
			p.audioFailed = true
			p.audioSpec = want
			return
		}
		p.audioFailed = false
	}

	data, err := p.packAudio(f)
	if err != nil {
		p.log.Warnf("audio frame: %v", err)
		return
	}
	if err := p.audio.Queue(data); err != nil {
		p.log.Warnf("queue audio: %v", err)
		return
	}
	if p.audioDump != nil {
		if err := p.audioDump.Write(data); err != nil {
			p.log.Debugf("audio dump: %v", err)
		}
	}

	p.statsMu.Lock()
	p.stats.AudioFrames++
	p.stats.AudioBytes += uint64(len(data))
	p.statsMu.Unlock()
}

func (p *Player) openAudio(spec audioSpec) error {
	if spec.Format == castkit.AudioFormatUnknown {
		return castkit.ErrUnknownSampleFormat
	}
	if spec.Freq <= 0 || spec.Channels <= 0 {
		return fmt.Errorf("invalid audio spec %s", describeSpec(spec))
	}
	if err := p.audio.Open(spec); err != nil {
		return err
	}
	p.audioSpec = spec
	p.audioOpen = true
	p.log.Infof("audio device opened: %s", describeSpec(spec))
	return nil
}

// packAudio returns the frame as bytes in the device format. Float planar
// output goes through the codec library's resampler; other planar formats
// are interleaved without conversion so they keep matching the device.
func (p *Player) packAudio(f *castkit.Frame) ([]byte, error) {
	if !f.SampleFormat.IsPlanar() {
		n := f.AudioBytes()
		if len(f.Data) == 0 || len(f.Data[0]) < n {
			return nil, fmt.Errorf("packed plane shorter than %d bytes", n)
		}
		return f.Data[0][:n], nil
	}
	if castkit.MapSampleFormat(f.SampleFormat) == castkit.NativeF32() {
		return castkit.InterleaveAudioFrame(f, p.audioResampler())
	}
	return castkit.InterleaveFrame(f)
}

// audioResampler lazily creates the library resampler. It returns nil when
// the library has none, and the Go interleaver is used instead.
func (p *Player) audioResampler() castkit.Resampler {
	if p.resampler != nil {
		return p.resampler
	}
	lib := p.cfg.Library
	if lib == nil {
		lib, _ = castkit.DefaultCodecLibrary()
	}
	rf, ok := lib.(castkit.ResamplerFactory)
	if !ok {
		return nil
	}
	r, err := rf.NewResampler()
	if err != nil {
		p.log.Debugf("resampler unavailable: %v", err)
		return nil
	}
	p.resampler = r
	return r
}

func sameFormat(a, b audioSpec) bool {
	return a.Freq == b.Freq && a.Format == b.Format && a.Channels == b.Channels
}

func describeSpec(s audioSpec) string {
	return fmt.Sprintf("%d Hz %s %dch %d samples", s.Freq, s.Format, s.Channels, s.Samples)
}
