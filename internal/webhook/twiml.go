// Package webhook implements the Webhook Ingestor (spec §4.G): signed
// status/amd/voice callbacks from the telephony provider, answered
// with the provider's XML control format. Grounded on
// original_source's webhooks.py for the exact TwiML literals and on
// the platform's call_status_handler.go for cause/reason dispatch
// shape.
package webhook

import "encoding/xml"

// TwiML control responses use encoding/xml directly: no pack example
// builds XML-templated telephony control documents, and the handful
// of fixed response shapes here (empty ack, conference bridge,
// hangup, pause) are far simpler than any templating library would
// justify pulling in.

type emptyResponse struct {
	XMLName xml.Name `xml:"Response"`
}

type hangupResponse struct {
	XMLName xml.Name `xml:"Response"`
	Hangup  struct{} `xml:"Hangup"`
}

type pauseResponse struct {
	XMLName xml.Name `xml:"Response"`
	Pause   struct {
		Length int `xml:"length,attr"`
	} `xml:"Pause"`
}

type conferenceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Dial    struct {
		Conference struct {
			Beep                   string `xml:"beep,attr"`
			StartConferenceOnEnter string `xml:"startConferenceOnEnter,attr"`
			EndConferenceOnExit    string `xml:"endConferenceOnExit,attr"`
			Room                   string `xml:",chardata"`
		} `xml:"Conference"`
	} `xml:"Dial"`
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

func marshal(v interface{}) []byte {
	body, err := xml.Marshal(v)
	if err != nil {
		return []byte(xmlHeader + "<Response></Response>")
	}
	return append([]byte(xmlHeader), body...)
}

// EmptyAck is returned for status callbacks that require no control
// directive.
func EmptyAck() []byte {
	return marshal(emptyResponse{})
}

// Hangup instructs the provider to terminate the call leg.
func Hangup() []byte {
	return marshal(hangupResponse{})
}

// VoicePause is the initial answered-call handshake: a short pause to
// let AMD complete (spec §6 (iv)).
func VoicePause() []byte {
	r := pauseResponse{}
	r.Pause.Length = 1
	return marshal(r)
}

// BridgeToConference instructs the provider to dial the call leg into
// the named conference room (spec §6 (ii)).
func BridgeToConference(callID string) []byte {
	r := conferenceResponse{}
	r.Dial.Conference.Beep = "false"
	r.Dial.Conference.StartConferenceOnEnter = "true"
	r.Dial.Conference.EndConferenceOnExit = "true"
	r.Dial.Conference.Room = "room-" + callID
	return marshal(r)
}
