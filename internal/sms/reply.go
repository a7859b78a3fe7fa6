package sms

import "net/http"

// Reply is the tri-state outcome of one inbound command: a human-readable
// message, an HTTP-style numeric status used as a severity hint, and a
// success flag. Every inbound message produces exactly one Reply; silent
// drops are a defect.
type Reply struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Success bool   `json:"success"`
}

func ok(message string) Reply {
	return Reply{Message: message, Status: http.StatusOK, Success: true}
}

func malformed(message string) Reply {
	return Reply{Message: message, Status: http.StatusBadRequest}
}

func unauthenticated(message string) Reply {
	return Reply{Message: message, Status: http.StatusUnauthorized}
}

func notFound(message string) Reply {
	return Reply{Message: message, Status: http.StatusNotFound}
}

func insufficientFunds(message string) Reply {
	return Reply{Message: message, Status: http.StatusPaymentRequired}
}

func internalError(message string) Reply {
	return Reply{Message: message, Status: http.StatusInternalServerError}
}
