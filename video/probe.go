package video

import (
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
)

// ProbeMP4 reads the moov box of an MP4/MOV file without loading media
// data.
func ProbeMP4(path string) (model.ContainerInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ContainerInfo{}, xerrors.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	mp4File, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return model.ContainerInfo{}, xerrors.Errorf("decode mp4 %s: %w", path, err)
	}

	moov := mp4File.Moov
	if moov == nil && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	if moov == nil {
		return model.ContainerInfo{}, xerrors.Errorf("%s: no moov box", path)
	}

	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		return trackInfo(trak), nil
	}

	return model.ContainerInfo{}, xerrors.Errorf("%s: no video track found", path)
}

func trackInfo(trak *mp4.TrakBox) model.ContainerInfo {
	var info model.ContainerInfo
	if trak.Tkhd != nil {
		info.TrackID = trak.Tkhd.TrackID
		info.Width = int(trak.Tkhd.Width >> 16)
		info.Height = int(trak.Tkhd.Height >> 16)
	}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		info.Timescale = trak.Mdia.Mdhd.Timescale
		secs := float64(trak.Mdia.Mdhd.Duration) / float64(info.Timescale)
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	if trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsz != nil {
		info.FrameCount = int(trak.Mdia.Minf.Stbl.Stsz.SampleNumber)
	}
	if info.FrameCount > 0 && info.Duration > 0 {
		info.FPS = float64(info.FrameCount) / info.Duration.Seconds()
	}
	return info
}
