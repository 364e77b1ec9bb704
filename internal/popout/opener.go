package popout

// pageHandle never self-reports closure; the page signals it explicitly
// through MarkClosed.
type pageHandle struct{}

func (pageHandle) Closed() bool { return false }

// PageOpener is the opener for deployments where the hosting page performs
// the actual window.open in response to the detach event. Open always
// succeeds; a popup blocker on the page side is reported back by the page
// calling MarkClosed immediately, which restores the app in the shell.
type PageOpener struct{}

// NewPageOpener creates a page-delegating opener.
func NewPageOpener() *PageOpener {
	return &PageOpener{}
}

// Open accepts the request and hands back a handle that closes only on an
// explicit signal.
func (o *PageOpener) Open(spec OpenSpec) (Handle, error) {
	return pageHandle{}, nil
}
