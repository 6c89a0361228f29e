package errx

// Config builds a configuration error.
func Config(message string, err error) *AppError {
	return New(KindConfig, err, message)
}

// WrapAPI maps a non-success completion response to the unified error type.
func WrapAPI(status int, err error) *AppError {
	e := New(KindAPI, err, APIErrorMessage)
	e.Status = status
	return e
}

// EmptyResponse reports a completion that carried no content.
func EmptyResponse() *AppError {
	return New(KindEmptyResponse, nil, EmptyResponseMessage)
}

// WrapTimeout marks err as a completion deadline failure.
func WrapTimeout(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(KindTimeout, err, TimeoutMessage)
}

// WrapRequest marks err as a transport or decoding failure.
func WrapRequest(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(KindRequest, err, RequestErrorMessage)
}

// WrapCanceled marks err as a completion the caller stopped waiting for.
func WrapCanceled(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(KindCanceled, err, CanceledMessage)
}

// WrapSend marks err as a chat platform delivery failure.
func WrapSend(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(KindSend, err, SendErrorMessage)
}
