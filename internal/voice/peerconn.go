package voice

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// pionConn adapts a pion PeerConnection to the peerConn surface the session
// drives. SDP and candidates cross as JSON so the relay never needs pion
// types.
type pionConn struct {
	pc         *webrtc.PeerConnection
	closeMedia func()
}

func (c *pionConn) CreateOffer(_ context.Context) (json.RawMessage, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

func (c *pionConn) CreateAnswer(_ context.Context, offer json.RawMessage) (json.RawMessage, error) {
	var remote webrtc.SessionDescription
	if err := json.Unmarshal(offer, &remote); err != nil {
		return nil, err
	}
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		return nil, err
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

func (c *pionConn) AcceptAnswer(answer json.RawMessage) error {
	var remote webrtc.SessionDescription
	if err := json.Unmarshal(answer, &remote); err != nil {
		return err
	}
	return c.pc.SetRemoteDescription(remote)
}

func (c *pionConn) AddCandidate(candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return err
	}
	return c.pc.AddICECandidate(init)
}

func (c *pionConn) OnCandidate(fn func(candidate json.RawMessage)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		payload, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			return
		}
		fn(payload)
	})
}

func (c *pionConn) Close() error {
	if c.closeMedia != nil {
		c.closeMedia()
	}
	return c.pc.Close()
}

// wirePeerConnection attaches the handlers every audio leg needs. The
// remote feed is drained continuously; decoding and playback belong to the
// embedding client.
func wirePeerConnection(pc *webrtc.PeerConnection) {
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go func() {
			for {
				if _, _, err := track.ReadRTP(); err != nil {
					return
				}
			}
		}()
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("peer connection state", "state", state.String())
	})
}

// addRecvAudioTransceiver adds a recvonly audio transceiver so the SDP
// always carries a valid m-line with ICE credentials even without a local
// microphone.
func addRecvAudioTransceiver(pc *webrtc.PeerConnection) error {
	_, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	return err
}
