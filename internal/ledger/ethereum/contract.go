package ethereum

// registryABI describes the certificate registry contract: one write-once
// record per identifier.
const registryABI = `[
  {
    "type": "function",
    "name": "issueCertificate",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "qrCodeId", "type": "string"},
      {"name": "certificateHash", "type": "string"},
      {"name": "ipfsHash", "type": "string"},
      {"name": "issuerId", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getCertificate",
    "stateMutability": "view",
    "inputs": [
      {"name": "qrCodeId", "type": "string"}
    ],
    "outputs": [
      {
        "name": "",
        "type": "tuple",
        "components": [
          {"name": "qrCodeId", "type": "string"},
          {"name": "certificateHash", "type": "string"},
          {"name": "ipfsHash", "type": "string"},
          {"name": "issuerId", "type": "string"}
        ]
      }
    ]
  }
]`

const (
	methodIssue = "issueCertificate"
	methodGet   = "getCertificate"
)

// onChainCertificate mirrors the getCertificate tuple.
type onChainCertificate struct {
	QrCodeId        string
	CertificateHash string
	IpfsHash        string
	IssuerId        string
}
