package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// characterABI is the subset of the character NFT contract this service calls
const characterABI = `[
  {"type":"function","name":"createCharacter","stateMutability":"nonpayable",
   "inputs":[
     {"name":"name","type":"string"},
     {"name":"description","type":"string"},
     {"name":"personality","type":"string"},
     {"name":"avatarURI","type":"string"},
     {"name":"tokenURI","type":"string"},
     {"name":"isPublic","type":"bool"}],
   "outputs":[{"name":"tokenId","type":"uint256"}]},
  {"type":"function","name":"getCharacter","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[
     {"name":"name","type":"string"},
     {"name":"description","type":"string"},
     {"name":"personality","type":"string"},
     {"name":"avatarURI","type":"string"},
     {"name":"creator","type":"address"},
     {"name":"createdAt","type":"uint256"},
     {"name":"isPublic","type":"bool"}]},
  {"type":"function","name":"getPublicCharacters","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"string"}]}
]`

// transferSignature is the ERC-721 Transfer event emitted on mint
const transferSignature = "Transfer(address,address,uint256)"

var transferTopic = eventTopic(transferSignature)

func parseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(characterABI))
}

func eventTopic(signature string) common.Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(signature))
	return common.BytesToHash(hash.Sum(nil))
}
