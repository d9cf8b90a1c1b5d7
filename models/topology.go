package models

// Topology is the graph served to visualization tooling
type Topology struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode ids live in four namespaces: "cluster", "node:<name>",
// "vm:<vmid>" and "br:<node>:<bridge>".
type GraphNode struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SubTitle      string `json:"subTitle,omitempty"`
	MainStat      string `json:"mainStat,omitempty"`
	SecondaryStat string `json:"secondaryStat,omitempty"`
}

// GraphEdge connects two GraphNode ids
type GraphEdge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	MainStat string `json:"mainStat,omitempty"` // net key for bridge edges
}

const ClusterNodeID = "cluster"

func HostNodeID(node string) string {
	return "node:" + node
}

func GuestNodeID(vmid uint64) string {
	return "vm:" + uitoa(vmid)
}

func BridgeNodeID(node, bridge string) string {
	return "br:" + node + ":" + bridge
}
