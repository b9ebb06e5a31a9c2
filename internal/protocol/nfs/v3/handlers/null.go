package handlers

// NullRequest is empty; NULL exists for connectivity checks.
type NullRequest struct{}

type NullResponse struct{}

func DecodeNullRequest(data []byte) (*NullRequest, error) {
	return &NullRequest{}, nil
}

func (h *Handler) Null(ctx *NFSHandlerContext, req *NullRequest) (*NullResponse, error) {
	return &NullResponse{}, nil
}

func (resp *NullResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
