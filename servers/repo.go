package servers

type Repo interface {
	Upsert(server *Server) error
	Delete(clientID string) error
	GetByClientID(clientID string) (*Server, error)
	List(offset, limit int) ([]*Server, error)
}
