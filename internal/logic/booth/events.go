package booth

// Client events. Names are part of the client protocol and must not change.
const (
	// inbound
	EventTriggerPhoto   = "trigger_photo"
	EventPrintPreview   = "print_preview"
	EventPrint          = "print"
	EventLatestPhotos   = "get latest photos"
	EventAuthenticate   = "authenticate"
	EventContactAddress = "contact address"

	// outbound
	EventNewPhotos           = "new photos"
	EventTriggerPhotoSuccess = "trigger_photo_success"
	EventTriggerPhotoError   = "trigger_photo_error"
	EventPrintPreviewSuccess = "print_preview_success"
	EventPrintPreviewError   = "print_preview_error"
	EventPrintSuccess        = "print_success"
	EventPrintError          = "print_error"
	EventAuthenticated       = "authenticated"
	EventUseGrayscale        = "use grayscale"
	EventEnableRemoteRelease = "enable remote release"
	EventSlideshow           = "slideshow"
)

// Notifier delivers an event to every connected client.
type Notifier interface {
	Broadcast(event string, args ...any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event string, args ...any)

func (f NotifierFunc) Broadcast(event string, args ...any) { f(event, args...) }
