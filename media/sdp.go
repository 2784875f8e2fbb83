package media

import (
	"fmt"

	psdp "github.com/pion/sdp/v3"
)

// ContentTypeSDP is the content-type the Session sets on every SDP body
// it sends. Inbound bodies are checked by parsing them (ValidateSDP);
// their Content-Type header is not examined.
const ContentTypeSDP = "application/sdp"

// ValidateSDP parses body and rejects it if it has no media descriptions,
// following the same check teacher's extractSDPInfo performs before
// handing a body to the media engine.
func ValidateSDP(body []byte) (*psdp.SessionDescription, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("media: empty SDP body")
	}
	sdpObj := &psdp.SessionDescription{}
	if err := sdpObj.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("media: failed to parse SDP: %w", err)
	}
	if len(sdpObj.MediaDescriptions) == 0 {
		return nil, fmt.Errorf("media: no media descriptions in SDP")
	}
	return sdpObj, nil
}

// Direction is the RFC 4566 media direction attribute.
type Direction string

const (
	DirectionSendRecv Direction = "sendrecv"
	DirectionSendOnly Direction = "sendonly"
	DirectionRecvOnly Direction = "recvonly"
	DirectionInactive Direction = "inactive"
)

var directionAttrs = map[Direction]bool{
	DirectionSendRecv: true, DirectionSendOnly: true,
	DirectionRecvOnly: true, DirectionInactive: true,
}

// PatchDirection rewrites the media-level direction attribute of every
// media description in body to dir, removing any prior direction
// attribute first. Used by the renegotiate path to express local/remote
// hold (HoldType) the way teacher's ReINVITEOptions.HoldType intends,
// without teacher's own RTP/codec concerns since those are out of scope
// here.
func PatchDirection(body []byte, dir Direction) ([]byte, error) {
	sdpObj, err := ValidateSDP(body)
	if err != nil {
		return nil, err
	}
	for _, md := range sdpObj.MediaDescriptions {
		filtered := md.Attributes[:0]
		for _, a := range md.Attributes {
			if directionAttrs[Direction(a.Key)] {
				continue
			}
			filtered = append(filtered, a)
		}
		md.Attributes = append(filtered, psdp.Attribute{Key: string(dir)})
	}
	return sdpObj.Marshal()
}

// IsLateOffer reports whether an INVITE/re-INVITE/UPDATE carries no SDP
// body at all — a valid pattern (RFC 3261 §13.2.1) where the answer
// carries the offer instead.
func IsLateOffer(body []byte) bool {
	return len(body) == 0
}
