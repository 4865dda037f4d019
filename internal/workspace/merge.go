package workspace

// MergeName is the download name of a merged document.
const MergeName = "dopeoffice_merged.pdf"

// MergePage is one page of a merge request.
type MergePage struct {
	FileID    string `json:"file_id"`
	PageIndex int    `json:"page_index"`
	Rotation  int    `json:"rotation"`
}

// MergeRequest is the body of POST /merge.
type MergeRequest struct {
	Pages []MergePage `json:"pages"`
}

// MergeRequest builds the merge payload from the queue, in queue order, with
// each page's current rotation.
func (s *Session) MergeRequest() (MergeRequest, error) {
	if len(s.Queue) == 0 {
		return MergeRequest{}, ErrEmptyQueue
	}
	req := MergeRequest{Pages: make([]MergePage, 0, len(s.Queue))}
	for _, e := range s.Queue {
		req.Pages = append(req.Pages, MergePage{
			FileID:    e.FileID,
			PageIndex: e.PageIndex,
			Rotation:  s.Rotation(e.FileID, e.PageIndex),
		})
	}
	return req, nil
}
