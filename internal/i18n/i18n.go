// Package i18n holds the user-facing notices of the capture workflow in
// every supported language and resolves a caller's language preference.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MessageID identifies a user-facing notice. The English text is the ID.
type MessageID string

const (
	MsgRecordingStarted    MessageID = "Recording started"
	MsgRecordingSaved      MessageID = "Recording saved"
	MsgRecordingReset      MessageID = "Recording discarded"
	MsgNoAudio             MessageID = "No audio recorded"
	MsgProcessingAudio     MessageID = "Processing audio with AI..."
	MsgAudioTranscribed    MessageID = "Audio transcribed!"
	MsgFormGenerated       MessageID = "AI form generated!"
	MsgProcessFailed       MessageID = "Failed to process audio"
	MsgSaved               MessageID = "Observation saved successfully"
	MsgSavedEmergency      MessageID = "Observation saved. Emergency alert sent to supervisors"
	MsgSaveFailed          MessageID = "Failed to save observation"
	MsgGatePhotoUploaded   MessageID = "Gate photo uploaded"
	MsgSafetyCheckComplete MessageID = "Safety check complete!"
	MsgGatePhotoRequired   MessageID = "Please upload gate photo first"
	MsgMicrophoneFailed    MessageID = "Could not access microphone"
	MsgMicUnsupported      MessageID = "Audio recording is not supported on this device"
	MsgMicPermission       MessageID = "Microphone permission denied"
	MsgMicNotFound         MessageID = "No microphone found"
	MsgMicBusy             MessageID = "Microphone is in use by another process"
	MsgMicFormat           MessageID = "Audio format not supported, use text input"
	MsgAudioModeRequired   MessageID = "Switch to voice input to record"
	MsgSubjectRequired     MessageID = "Please enter the animal name"
	MsgNarrativeRequired   MessageID = "Please enter your observation"
	MsgFutureDate          MessageID = "Observation date cannot be in the future"
	MsgBusy                MessageID = "Please wait, a request is already in progress"
	MsgInvalidState        MessageID = "This action is not available right now"
	MsgInvalidField        MessageID = "Invalid form field"
	MsgVideoRequiresSOS    MessageID = "Emergency video can only be attached to an emergency"
	MsgVideoLimit          MessageID = "Only one emergency video can be attached"
	MsgSessionClosed       MessageID = "This observation is already closed"
	MsgNotAllowed          MessageID = "Your role cannot log observations"
	MsgLoginRequired       MessageID = "Please log in first"
	MsgEmergencyAlertSent  MessageID = "Emergency alert sent to supervisors"
	MsgEmergencyAlertFail  MessageID = "Failed to send emergency alert"
	MsgMediaUploadFailed   MessageID = "Some files could not be uploaded"
)

// Supported languages, in preference order.
var Supported = []language.Tag{language.English, language.Hindi}

var matcher = language.NewMatcher(Supported)

var hindi = map[MessageID]string{
	MsgRecordingStarted:    "रिकॉर्डिंग शुरू हुई",
	MsgRecordingSaved:      "रिकॉर्डिंग सहेजी गई",
	MsgRecordingReset:      "रिकॉर्डिंग हटा दी गई",
	MsgNoAudio:             "कोई ऑडियो रिकॉर्ड नहीं हुआ",
	MsgProcessingAudio:     "AI से ऑडियो प्रोसेस हो रहा है...",
	MsgAudioTranscribed:    "ऑडियो का ट्रांसक्रिप्शन हो गया!",
	MsgFormGenerated:       "AI फ़ॉर्म तैयार हो गया!",
	MsgProcessFailed:       "ऑडियो प्रोसेस नहीं हो सका",
	MsgSaved:               "अवलोकन सफलतापूर्वक सहेजा गया",
	MsgSavedEmergency:      "अवलोकन सहेजा गया। पर्यवेक्षकों को आपातकालीन सूचना भेजी गई",
	MsgSaveFailed:          "अवलोकन सहेजा नहीं जा सका",
	MsgGatePhotoUploaded:   "गेट की फ़ोटो अपलोड हुई",
	MsgSafetyCheckComplete: "सुरक्षा जाँच पूरी हुई!",
	MsgGatePhotoRequired:   "कृपया पहले गेट की फ़ोटो अपलोड करें",
	MsgMicrophoneFailed:    "माइक्रोफ़ोन तक पहुँच नहीं हो सकी",
	MsgMicUnsupported:      "इस डिवाइस पर ऑडियो रिकॉर्डिंग समर्थित नहीं है",
	MsgMicPermission:       "माइक्रोफ़ोन की अनुमति नहीं दी गई",
	MsgMicNotFound:         "कोई माइक्रोफ़ोन नहीं मिला",
	MsgMicBusy:             "माइक्रोफ़ोन किसी अन्य प्रक्रिया द्वारा उपयोग में है",
	MsgMicFormat:           "ऑडियो फ़ॉर्मेट समर्थित नहीं है, टेक्स्ट इनपुट का उपयोग करें",
	MsgAudioModeRequired:   "रिकॉर्ड करने के लिए वॉइस इनपुट चुनें",
	MsgSubjectRequired:     "कृपया पशु का नाम दर्ज करें",
	MsgNarrativeRequired:   "कृपया अपना अवलोकन दर्ज करें",
	MsgFutureDate:          "अवलोकन की तारीख भविष्य की नहीं हो सकती",
	MsgBusy:                "कृपया प्रतीक्षा करें, एक अनुरोध पहले से चल रहा है",
	MsgInvalidState:        "यह क्रिया अभी उपलब्ध नहीं है",
	MsgInvalidField:        "अमान्य फ़ॉर्म फ़ील्ड",
	MsgVideoRequiresSOS:    "आपातकालीन वीडियो केवल आपातकाल में जोड़ा जा सकता है",
	MsgVideoLimit:          "केवल एक आपातकालीन वीडियो जोड़ा जा सकता है",
	MsgSessionClosed:       "यह अवलोकन पहले ही बंद हो चुका है",
	MsgNotAllowed:          "आपकी भूमिका अवलोकन दर्ज नहीं कर सकती",
	MsgLoginRequired:       "कृपया पहले लॉग इन करें",
	MsgEmergencyAlertSent:  "पर्यवेक्षकों को आपातकालीन सूचना भेजी गई",
	MsgEmergencyAlertFail:  "आपातकालीन सूचना नहीं भेजी जा सकी",
	MsgMediaUploadFailed:   "कुछ फ़ाइलें अपलोड नहीं हो सकीं",
}

func init() {
	for id, text := range hindi {
		if err := message.SetString(language.Hindi, string(id), text); err != nil {
			panic(err)
		}
		if err := message.SetString(language.English, string(id), string(id)); err != nil {
			panic(err)
		}
	}
}

// Match resolves language preferences (codes or Accept-Language values) to
// a supported tag, falling back to English.
func Match(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// Code returns the two letter code the backend expects, e.g. "hi".
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// T renders a notice in the preferred language.
func T(lang string, id MessageID, args ...any) string {
	return message.NewPrinter(Match(lang)).Sprintf(string(id), args...)
}
