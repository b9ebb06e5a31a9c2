package handlers

type NullRequest struct{}

type NullResponse struct{}

func DecodeNullRequest(data []byte) (*NullRequest, error) {
	return &NullRequest{}, nil
}

// MountNull does nothing. Clients use it to probe the server.
func (h *Handler) MountNull(ctx *MountContext, req *NullRequest) (*NullResponse, error) {
	return &NullResponse{}, nil
}

func (resp *NullResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
